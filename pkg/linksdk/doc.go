/*
Package linksdk is a client for the modernauth identity-linking service.

# Overview

A tenant (typically a game server) hands each player a one-time token and a
link. The player opens the link, signs in with the external identity
provider and confirms the username; the tenant polls until the token is
authorized and then lets the player in.

The package is organized around two types:

  - Client: tenant calls authenticated with the tenant secret, plus the
    public health and key-set endpoints.
  - Session: calls made on behalf of a signed-in person (linking,
    invite redemption and administration).

A tenant plugin typically does:

	client := linksdk.NewClient("https://auth.example.com", "bonk-network", secret)

	token, err := linksdk.NewLinkToken()
	if err := client.IssueToken(ctx, token, "PyroEdged"); err != nil { ... }

	fmt.Println("open", client.LinkURL(token, "PyroEdged"))

	ok, err := client.WaitForLink(ctx, token, 5*time.Second)

An administrator tool exchanges an ID token from the provider for a
session:

	sess, err := client.NewSession(ctx, idToken)
	servers, err := sess.ListServers(ctx)

# Errors

Every non-2xx response is returned as *APIError carrying the HTTP status
and the error code from the body. Compare with errors.As, or match the
predefined values with IsCode.
*/
package linksdk
