// Package agentdex is a Go client for streaming semantic search over
// on-chain agent records.
//
// A Search opens a server-sent event stream against the agent index backend,
// accumulates results as they arrive and, when a cache is configured, mirrors
// every partial result set into Valkey or Redis under a key derived from the
// canonical search parameters. Other processes read the last known result for
// the same parameters with Client.Cached.
//
//	client, _ := agentdex.New(ctx,
//	    agentdex.WithBaseURL("https://index.example.com"),
//	    agentdex.WithValkey("localhost:6379", ""),
//	)
//	defer client.Close()
//
//	s, _ := client.Search("defi yield agents", agentdex.Filters{Chains: []int64{8453}})
//	defer s.Close()
//	s.Start()
//	snap, _ := s.Wait(ctx)
//	for _, a := range snap.Results {
//	    fmt.Println(a.ID, a.Name)
//	}
package agentdex
