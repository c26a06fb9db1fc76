/*
main.go - dashctl entry point

EXAMPLES:
  dashctl types
  dashctl -s http://localhost:3000 list projects --filter status=active --sort date-desc
  dashctl get clients 550e8400-e29b-41d4-a716-446655440000 --format json

SEE ALSO:
  - cli/root.go: commands and flags
*/
package main

import (
	"os"

	"github.com/warp/dashboard-engine/cli"
)

func main() {
	os.Exit(cli.Execute())
}
