// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package supervisor provides process supervision for Sentinel using suture v4.

Long-running services are grouped into three child supervisors so that a
failure restarts only its own layer:

	RootSupervisor ("sentinel")
	├── DataSupervisor ("data-layer")
	│   ├── AuditDrainService
	│   ├── session cleanup (PeriodicService)
	│   ├── audit WAL retry (PeriodicService)
	│   └── query cache cleanup (PeriodicService)
	├── MonitorSupervisor ("monitor-layer")
	│   ├── monitor sweep (PeriodicService)
	│   └── alert stream hub (websocket.Hub)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (service start, failure, restart, backoff) are logged
through sutureslog into the slog logger passed to NewSupervisorTree, which
cmd/server backs with zerolog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.TreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewAuditDrainService(auditLogger))
	tree.AddMonitorService(services.NewMonitorSweepService(mon, interval, timeout))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Shutdown waits up to TreeConfig.ShutdownTimeout per service;
UnstoppedServiceReport lists any service that did not return in time.
*/
package supervisor
