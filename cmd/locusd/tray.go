package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getlantern/systray"

	"locusd/internal/trayicon"
)

// runTray drives the systray UI for the lifetime of the process, mirroring
// the teacher's onReady/onExit split (main.go): disabled status menu
// items refreshed on a 30s ticker, an Exit item, and ctx-cancellation on
// either Exit or a process signal.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app) {
	ready := func() {
		systray.SetIcon(trayicon.Data)
		systray.SetTitle("locusd")
		systray.SetTooltip("locusd — local file-history engine")

		mActivity := systray.AddMenuItem(status.summaryLine(), "Most recent backup activity")
		mActivity.Disable()

		mQueue := systray.AddMenuItem(status.queueLine(), "Backup queue depth")
		mQueue.Disable()

		mGC := systray.AddMenuItem(status.gcLine(), "Last garbage collection pass")
		mGC.Disable()

		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Exit", "Stop locusd")

		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					mActivity.SetTitle(status.summaryLine())
					mQueue.SetTitle(status.queueLine())
					mGC.SetTitle(status.gcLine())
				}
			}
		}()

		go func() {
			<-mQuit.ClickedCh
			cancel()
			systray.Quit()
		}()

		go func() {
			<-ctx.Done()
			systray.Quit()
		}()
	}

	onExit := func() {
		log.Printf("locusd: shutting down")
		fmt.Println("locusd: exiting")
	}

	systray.Run(ready, onExit)
}
