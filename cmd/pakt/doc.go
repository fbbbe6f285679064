// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the pakt command-line interface.
//
// Commands are thin adapters: they load the manifest and the user
// configuration, build an execute.Session and render the outcome. All
// resolution and installation logic lives in pkg/.
package cmd
