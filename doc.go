// Package resallocd is a resource-allocation broker: a long-running daemon
// core that maintains pools of externally-provisioned resources (VMs,
// containers, cloud instances — anything whose lifecycle is driven by shell
// hooks) and matches incoming tickets to suitable idle resources.
//
// # Basic usage
//
//	broker, err := resallocd.NewBroker(resallocd.WithDataDir("/var/lib/resallocd"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer broker.Close()
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go broker.Run(ctx)
//
//	ticketID, tid, err := broker.Submit(ctx, resallocd.TicketRequest{Tags: []string{"pool-a"}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resourceID, err := broker.Wait(ctx, tid)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// use the resource, then:
//	_ = broker.CloseTicket(ctx, ticketID)
//
// # Scope
//
// This package implements the control core: the resource state machine, the
// pool control loop, ticket-to-resource matching, and the concurrency
// between them. Ticket submission/close/wait here is the minimal in-process
// surface the core needs to be independently usable; an RPC/IPC layer in
// front of it is left to the caller.
package resallocd
