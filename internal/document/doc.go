// Package document assembles the rendered pages into a landscape A4 PDF and
// applies a certification signature with the issuer's X.509 material.
package document
