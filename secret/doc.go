// Package secret resolves credentials referenced from configuration.
//
// Configuration values may contain ${VAR} references, expanded strictly by
// ExpandEnvStrict, and secret references of the form
//
//	secretref:<provider>:<ref>
//
// resolved by a Resolver. Two providers are built in:
//   - env:  secretref:env:SMTP_PASSWORD reads an environment variable
//   - file: secretref:file:/run/secrets/smtp reads a file, trimming the
//     trailing newline
//
// A reference may fill the whole value or appear inline, as in
// "Bearer secretref:env:TOKEN".
package secret
