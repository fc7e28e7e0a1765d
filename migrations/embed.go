// Package migrations embeds the judge_submissions schema's migration
// files into the binary, so the migrate CLI ships with a known-good
// schema instead of depending on a migrations/ directory
// being laid out correctly relative to the working directory at deploy
// time.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
