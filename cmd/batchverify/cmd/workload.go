package cmd

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	mrand "math/rand"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/onflow/batch-verifier/module/batchverify"
	"github.com/onflow/batch-verifier/module/batchverify/bls"
	"github.com/onflow/batch-verifier/module/batchverify/kzg"
	"github.com/onflow/batch-verifier/module/batchverify/secp256k1"
)

const (
	backendSecp256k1 = "secp256k1"
	backendBLS       = "bls"
	backendKZG       = "kzg"
)

var backendNames = []string{backendSecp256k1, backendBLS, backendKZG}

// workload produces requests for one backend. Requests generated with corrupt set
// must fail verification; all others must pass.
type workload[R any] struct {
	backend  batchverify.Backend[R]
	generate func(i int, corrupt bool) (R, error)
	// key identifies requests with equal content for the verified-request cache
	key func(R) string
}

// digest hashes the given fields into a cache key.
func digest(fields ...[]byte) string {
	h := sha256.New()
	for _, f := range fields {
		_, _ = h.Write(f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func message(i int) []byte {
	return fmt.Appendf(nil, "batchverify load request %d", i)
}

func secp256k1Workload() (*workload[secp256k1.Request], error) {
	signer, err := secp256k1.NewSigner()
	if err != nil {
		return nil, fmt.Errorf("could not create secp256k1 signer: %w", err)
	}
	return &workload[secp256k1.Request]{
		backend: secp256k1.NewBackend(),
		generate: func(i int, corrupt bool) (secp256k1.Request, error) {
			req := signer.Sign(message(i))
			if corrupt {
				req.Hash[0] ^= 0xff
			}
			return req, nil
		},
		key: func(req secp256k1.Request) string {
			return digest(req.PublicKey, req.Hash[:], req.Signature)
		},
	}, nil
}

func blsWorkload() (*workload[bls.Request], error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("could not generate bls seed: %w", err)
	}
	signer, err := bls.NewSigner(seed)
	if err != nil {
		return nil, fmt.Errorf("could not create bls signer: %w", err)
	}
	return &workload[bls.Request]{
		backend: bls.NewBackend(),
		generate: func(i int, corrupt bool) (bls.Request, error) {
			req := signer.Sign(message(i))
			if corrupt {
				req.Message = message(-i - 1)
			}
			return req, nil
		},
		key: func(req bls.Request) string {
			return digest(req.PublicKey, req.Message, req.Signature)
		},
	}, nil
}

func kzgWorkload(seed int64) (*workload[kzg.Request], error) {
	backend, err := kzg.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("could not create kzg backend: %w", err)
	}
	rng := mrand.New(mrand.NewSource(seed))
	return &workload[kzg.Request]{
		backend: backend,
		generate: func(_ int, corrupt bool) (kzg.Request, error) {
			req, err := backend.Prove(randomBlob(rng))
			if err != nil {
				return kzg.Request{}, err
			}
			if corrupt {
				// commitment and proof no longer match the blob
				req.Blob = randomBlob(rng)
			}
			return req, nil
		},
		key: func(req kzg.Request) string {
			return digest(req.Blob[:], req.Commitment[:], req.Proof[:])
		},
	}, nil
}

// randomBlob returns a blob of canonical field elements.
func randomBlob(rng *mrand.Rand) *goethkzg.Blob {
	const scalarSize = 32
	var blob goethkzg.Blob
	for i := 0; i < len(blob); i += scalarSize {
		// big-endian; a zero top byte keeps the element below the modulus
		rng.Read(blob[i+1 : i+scalarSize])
	}
	return &blob
}
