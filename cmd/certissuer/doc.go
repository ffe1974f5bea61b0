// Command certissuer issues signed course certificates: it runs batches in
// process, hosts the scheduling daemon, talks to a running daemon over its
// control API, and inspects or exports the certificate record store.
package main
