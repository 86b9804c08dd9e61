package protocol

// This package implements parsing and serialising of the Sonic channel
// protocol, the line based protocol a Sonic server speaks on its channel port.
//
// - `Command` - A client instruction to the server (e.g. `QUERY`).
// - `Request` - A command plus its arguments, as sent by a client.
// - `Response` - A single line sent by the server, a status keyword followed
//                by an optional payload.
// - `Event` - A response that completes an earlier `PENDING` response.
//
// === General Syntax
//
// - lines are `\n` delimited, a trailing `\r` is tolerated when reading
// - commands and response keywords are uppercase
// - arguments are separated by a single space
//
// === Quoting
//
// Free text, that is PUSH and POP text, QUERY terms and SUGGEST words, is
// always wrapped in double quotes, even a single word. Any other argument is
// quoted only when it is empty, or contains whitespace, control characters,
// `"` or `\`. Inside quotes the following escapes are used, and nothing else
// is escaped:
//
//   ```
//     "   ->  \"
//     \   ->  \\
//     LF  ->  \n
//     CR  ->  \r
//     TAB ->  \t
//   ```
//
// Other control characters have no escape. Quote sends them as a plain space,
// and the client refuses them in free text.
//
// So a frame is always exactly one line, whatever the argument holds.
//
// === Connecting
//
// The server speaks first. A client must read the greeting before writing.
//
//   ```
//     < CONNECTED <sonic-server v1.4.9>
//     > START search SecretPassword
//     < STARTED search protocol(1) buffer(20000)
//   ```
//
// A failed START is answered with `ERR <reason>` and the connection is done.
//
// === Error responses
//
//   ```
//     > PUSH wiki
//     < ERR invalid_format(PUSH <collection> <bucket> <object> "<text>")
//   ```
//
// The error message is everything after `ERR `, untouched.
//
// === Options
//
// Optional arguments are rendered as `NAME(value)`, e.g. `LIMIT(10)`,
// `OFFSET(20)` or `LANG(eng)`.
//
// === Asynchronous replies
//
// Search commands are acknowledged with a `PENDING <id>` and completed later by
// an `EVENT <COMMAND> <id> <results...>` on the same connection.
//
//   ```
//     > QUERY wiki articles "love" LIMIT(10)
//     < PENDING Bt2m2gYa
//     < EVENT QUERY Bt2m2gYa article-1 article-3
//   ```
//
// === Quitting
//
//   ```
//     > QUIT
//     < ENDED quit
//   ```
//
