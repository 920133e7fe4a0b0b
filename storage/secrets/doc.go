// Package secrets implements storage.CredentialProvider.
//
// SecretsManager resolves names against AWS Secrets Manager and is what
// deployed runs use. Env resolves names against environment variables for
// local runs: "os-username" is read from <PREFIX>OS_USERNAME. Cached wraps
// either provider so each secret is fetched once per process.
package secrets
