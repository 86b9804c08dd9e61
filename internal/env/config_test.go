package env_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/sonic/internal/env"
)

var _ = Describe("env", func() {
	var (
		ctx context.Context
		dir string
	)

	writeConfig := func(body string) string {
		path := filepath.Join(dir, "sonic.toml")
		Expect(os.WriteFile(path, []byte(body), 0600)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		dir, err = os.MkdirTemp("", "sonic-env")
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		os.Unsetenv("SONIC_PORT")
		os.Unsetenv("SONIC_CONFIG")
		os.Unsetenv("SONIC_TIMEOUT")
		os.Unsetenv("SONIC_REUSEPORT")
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("LoadConfig()", func() {
		It("defaults to a local server", func() {
			conf, err := env.LoadConfig(ctx, "")
			Expect(err).To(Succeed())
			Expect(*conf).To(Equal(env.DefaultConfig()))
		})

		It("reads a TOML file", func() {
			path := writeConfig(`
host = "search.internal"
port = 2000
timeout = "2s"
`)

			conf, err := env.LoadConfig(ctx, path)
			Expect(err).To(Succeed())
			Expect(conf.Host).To(Equal("search.internal"))
			Expect(conf.Port).To(Equal(2000))
			Expect(conf.Timeout).To(Equal(2 * time.Second))
			Expect(conf.Password).To(Equal("SecretPassword"))
		})

		It("finds the TOML file through SONIC_CONFIG", func() {
			os.Setenv("SONIC_CONFIG", writeConfig(`port = 3000`))

			conf, err := env.LoadConfig(ctx, "")
			Expect(err).To(Succeed())
			Expect(conf.Port).To(Equal(3000))
		})

		It("lets the environment override the file", func() {
			path := writeConfig(`port = 2000`)
			os.Setenv("SONIC_PORT", "4000")

			conf, err := env.LoadConfig(ctx, path)
			Expect(err).To(Succeed())
			Expect(conf.Port).To(Equal(4000))
		})

		It("lets the environment override defaults and the file", func() {
			path := writeConfig(`timeout = "2s"`)
			os.Setenv("SONIC_TIMEOUT", "3s")
			os.Setenv("SONIC_REUSEPORT", "false")

			conf, err := env.LoadConfig(ctx, path)
			Expect(err).To(Succeed())
			Expect(conf.Timeout).To(Equal(3 * time.Second))
			Expect(conf.Reuseport).To(BeFalse())
			Expect(conf.Host).To(Equal(env.DefaultConfig().Host))
		})

		It("fails on a malformed variable", func() {
			os.Setenv("SONIC_TIMEOUT", "soon")

			_, err := env.LoadConfig(ctx, "")
			Expect(err).To(MatchError(ContainSubstring("environment")))
		})

		It("rejects unknown keys", func() {
			_, err := env.LoadConfig(ctx, writeConfig(`prot = 2000`))
			Expect(err).To(MatchError(ContainSubstring("prot")))
		})

		It("fails on a missing file", func() {
			_, err := env.LoadConfig(ctx, filepath.Join(dir, "missing.toml"))
			Expect(err).NotTo(Succeed())
		})
	})

	Describe("ClientOptions()", func() {
		It("maps the config onto channel options", func() {
			conf := env.DefaultConfig()
			conf.Port = 2000

			log := zap.NewNop()
			opts := conf.ClientOptions(log)

			Expect(opts.Addr()).To(Equal("localhost:2000"))
			Expect(opts.ReadTimeout).To(Equal(conf.Timeout))
			Expect(opts.LongTimeout).To(Equal(5 * time.Minute))
			Expect(opts.Log).To(BeIdenticalTo(log))
		})
	})

	Describe("MakeLogger()", func() {
		It("accepts zap levels", func() {
			log, err := env.MakeLogger("debug")
			Expect(err).To(Succeed())
			Expect(log.Core().Enabled(zap.DebugLevel)).To(BeTrue())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("loud")
			Expect(err).NotTo(Succeed())
		})
	})
})
