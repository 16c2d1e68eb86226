// Package client is the Go SDK for the access service.
//
// Every outgoing call goes through an Authorizer, which reads the current
// session from a session.Store, attaches the bearer token and classifies
// failures into the sentinel errors of this package. A Gateway drives the
// login, logout, register and refresh lifecycle. PermissionRegistry, Users
// and Applications wrap the REST resources and check the caller's role with
// the Guard before issuing any mutation.
//
//	c, err := client.New(cfg.BaseURL, store)
//	if err != nil { ... }
//	if _, err := c.Auth.Login(ctx, email, password); err != nil {
//		fmt.Println(client.UserMessage(err))
//	}
package client
