// Command server runs the wallet-messenger gateway: wallet-authenticated
// real-time messaging, voice-clip exchange, per-contact chat sync, and
// call signaling, fronted by a single chi router.
//
// DSN detection selects Postgres-backed persistence for profiles and call
// analytics when DATABASE_URL is set, falling back to the embedded
// bbolt/no-op equivalents otherwise, before handing off to serverapp for
// the listen/shutdown lifecycle.
package main

import (
	"log"

	"github.com/solace-labs/wallet-messenger/internal/serverapp"
)

func main() {
	cfg := serverapp.LoadConfig()

	app, err := serverapp.New(cfg)
	if err != nil {
		log.Fatalf("wire server: %v", err)
	}

	if err := app.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}
	serverapp.WaitForShutdown(app)
}
