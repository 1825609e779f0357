// Package identity implements the authentication pipeline for a multi-tenant
// web backend: signed bearer tokens, a per-request authentication filter,
// federated-login account provisioning, and the single-use token lifecycle
// backing email verification and password reset.
//
// The credential store is abstracted behind a bun-backed repository and email
// delivery behind a Mailer; both are collaborators, not part of this package's
// contract.
package identity
