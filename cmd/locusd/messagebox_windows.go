//go:build windows

package main

import (
	"syscall"
	"unsafe"
)

// Windows API constants for MessageBoxW.
const (
	mbOK          = 0x00000000
	mbIconWarning = 0x00000030
)

var (
	user32          = syscall.NewLazyDLL("user32.dll")
	procMessageBoxW = user32.NewProc("MessageBoxW")
)

// showMessageBox displays a native Windows message box, used to surface
// fatal startup errors (storage root inaccessible, instance lock already
// held) before the tray icon exists to show anything. Grounded on the
// teacher's messagebox_windows.go.
func showMessageBox(title, message string) {
	titlePtr, _ := syscall.UTF16PtrFromString(title)
	messagePtr, _ := syscall.UTF16PtrFromString(message)

	procMessageBoxW.Call(
		0,
		uintptr(unsafe.Pointer(messagePtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		uintptr(mbOK|mbIconWarning),
	)
}
