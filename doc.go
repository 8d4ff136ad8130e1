// Package prolink is the application-side core of the ProLink
// marketplace: a two-sided platform connecting clients (job posters)
// with professionals (tradespeople).
//
// The package owns the authentication/session bootstrap flow against a
// hosted backend (auth, relational tables, realtime change feed and
// object storage), the role-gated route guard, and thin data services
// for jobs, proposals, messages and notifications. The backend itself
// is an external collaborator reached through the Backend contract;
// two providers ship with the module: provider/supabase talks to the
// hosted service, provider/local is an embedded emulator used for
// development and tests.
//
// Typical wiring:
//
//	client, _ := supabase.NewClient(supabase.Config{BaseURL: url, AnonKey: key})
//	authctx := prolink.NewAuthContext(client,
//	    prolink.WithNotifier(toasts),
//	    prolink.WithLogger(logger),
//	)
//	authctx.Start(ctx)
//	defer authctx.Close()
//
//	guard := prolink.NewRouteGuard(authctx)
//	app.Use("/client-dashboard", guard.Middleware(prolink.RoleClient))
package prolink
