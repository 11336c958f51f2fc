// Package certinfo contains the pure certificate inspection logic.
// No I/O here - callers read the artifact bytes, this package parses
// and summarizes them.
package certinfo

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNoCertificate indicates the data held no CERTIFICATE PEM block.
	ErrNoCertificate = errors.New("no certificate found in PEM data")
)

// Summary describes the leaf certificate's remaining validity.
type Summary struct {
	Subject       string
	NotAfter      time.Time
	DaysRemaining int
}

// Summarize parses the first CERTIFICATE block in pemData (the leaf in a
// fullchain bundle) and computes its remaining validity against now.
func Summarize(pemData []byte, now time.Time) (Summary, error) {
	block := findCertificateBlock(pemData)
	if block == nil {
		return Summary{}, ErrNoCertificate
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return Summary{
		Subject:       cert.Subject.CommonName,
		NotAfter:      cert.NotAfter,
		DaysRemaining: DaysRemaining(cert.NotAfter, now),
	}, nil
}

// DaysRemaining returns the whole days between now and notAfter, rounded
// toward negative infinity: one second past expiry is already day -1.
func DaysRemaining(notAfter, now time.Time) int {
	return int(math.Floor(notAfter.Sub(now).Hours() / 24))
}

func findCertificateBlock(pemData []byte) *pem.Block {
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil
		}
		if block.Type == "CERTIFICATE" {
			return block
		}
	}
}
