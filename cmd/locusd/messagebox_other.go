//go:build !windows

package main

import "fmt"

// showMessageBox prints a fatal startup error to the console on platforms
// without a native message box API. Grounded on the teacher's
// messagebox_other.go.
func showMessageBox(title, message string) {
	fmt.Printf("%s: %s\n", title, message)
}
