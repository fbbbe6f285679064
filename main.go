// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/pakt/pakt/cmd/pakt"

func main() {
	cmd.Execute()
}
