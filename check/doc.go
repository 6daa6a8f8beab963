// Package check contains the individual verification stages used by the
// mailverify Verifier: syntax, domain intelligence, DNS policy, reputation,
// catch-all probing and scoring. Every network-facing stage fails open:
// a failed lookup yields "absent", never an error.
// These types can be used directly, but the recommended approach is
// to use the Verifier from the github.com/optimode/mailverify package.
package check
