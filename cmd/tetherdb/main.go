// TetherDB - embedded document store
//
// Usage:
//
//	tetherdb write '{"sensor": "t1", "value": 21.5}'
//	tetherdb filter sensor=t*
//	tetherdb cleanup --seconds 86400
package main

import "github.com/adrianmcphee/tetherdb/internal/cli"

func main() {
	cli.Execute()
}
