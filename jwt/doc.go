// Package jwt mints and verifies the signed access tokens issued by the
// engine. Key material comes from a [KeySource] so signing keys can rotate
// at runtime without rebuilding the [Manager].
package jwt
