package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"paylot.dev/internal/httpapi"
	"paylot.dev/internal/identity"
	"paylot.dev/internal/ledger"
	"paylot.dev/internal/money"
	"paylot.dev/internal/obs"
	"paylot.dev/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("PAYLOT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// With a DSN the ledger is durable; without one the service runs in
	// demo mode against seeded in-memory data.
	var (
		svc   ledger.Service
		probe httpapi.ReadyProbe
		store *pg.Store
	)
	if dsn := os.Getenv("PAYLOT_PG_DSN"); dsn != "" {
		var err error
		store, err = pg.Open(dsn, nil)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		roles := identity.NewPG(store.DB())
		store = pg.NewStore(store.DB(), roles)
		svc = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		svc = demoLedger()
	}

	api := httpapi.New(probe, version, svc)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting paylot-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}

func demoLedger() *ledger.InMemory {
	roles := identity.NewStatic(
		identity.Actor{ID: "fin-1", DisplayName: "Fiona Finance", Role: identity.RoleFinance},
		identity.Actor{ID: "col-1", DisplayName: "Carl Collection", Role: identity.RoleCollection},
	)
	svc := ledger.NewInMemory(roles)
	svc.SeedAccount(ledger.Account{ID: "acc-demo", TotalSaleAmount: money.Amount(7500000)})

	seed := func(id string, kind ledger.Kind, n *int, expected, interest int64, due time.Time) {
		if err := svc.SeedObligation(ledger.Obligation{
			ID:                id,
			AccountID:         "acc-demo",
			Kind:              kind,
			InstallmentNumber: n,
			AmountExpected:    money.Amount(expected),
			Interest:          money.Amount(interest),
			DueDate:           due,
		}); err != nil {
			log.Fatalf("seed obligation %s: %v", id, err)
		}
	}

	now := time.Now().UTC()
	seed("ob-demo-down", ledger.KindDownPayment, nil, 1500000, 0, now.AddDate(0, -2, 0))
	seed("ob-demo-initial", ledger.KindInitialPayment, nil, 500000, 0, now.AddDate(0, -1, 0))
	for i := 1; i <= 3; i++ {
		n := i
		seed("ob-demo-inst-"+strconv.Itoa(i), ledger.KindInstallment, &n, 60000, 1500, now.AddDate(0, i, 0))
	}
	return svc
}
