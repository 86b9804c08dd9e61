package main

import (
	"github.com/luma/sonic/cmd"
)

func main() {
	cmd.Execute()
}
