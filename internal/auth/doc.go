// Package auth links platform accounts to configured users.
//
// It implements the authorization-code flow the voice-assistant platform
// drives during account linking:
//   - the login form validates the OAuth request parameters and the client
//   - a successful login issues a short-lived authorization code (JWT)
//   - the token endpoint exchanges the code for a long-lived access token
//   - every skill request carries the access token, which resolves the
//     client and the user
//
// Codes and tokens are HS256 JWTs carrying the OAuth application id and the
// user id. Password hashes in users.json use Argon2id in PHC format; plain
// stored passwords are compared in constant time.
package auth
