// Package identity owns user records and password verification. It sits in
// front of the session layer: a successful VerifyLogin or Register hands a
// user ID to session issuance and plays no further part in the request.
package identity
