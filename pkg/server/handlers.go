package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/inclusion"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/types"
)

// maxBodyBytes bounds request bodies; a leaf set of this size holds about 15k leaves.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, &types.HealthResponse{
		Status: "ok",
		Hasher: s.service.Engine().Hasher().Name(),
		Source: s.service.HasBlockSource(),
	})
}

func (s *Server) handleProveLeaf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req types.ProveLeafRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if (len(req.Targets) == 0) == (req.Index == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of targets or index is required")
		return
	}

	var proofs []*merkle.MerkleProof
	if req.Index != nil {
		mp, err := s.service.ProveLeafAtIndex(r.Context(), req.Leaves, *req.Index)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		proofs = []*merkle.MerkleProof{mp}
	} else {
		var err error
		if proofs, err = s.service.ProveBatch(r.Context(), req.Leaves, req.Targets); err != nil {
			s.writeServiceError(w, err)
			return
		}
	}

	resp := &types.ProveLeafResponse{Proofs: make([]*types.ProofDocument, len(proofs))}
	for i, mp := range proofs {
		doc, err := types.NewProofDocument(s.service.Engine().Hasher().Name(), mp, req.Pad)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		resp.Proofs[i] = doc
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProveTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req types.ProveTxRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Block == "" {
		writeError(w, http.StatusBadRequest, "block is required")
		return
	}
	txid, err := bitcoin.HashFromDisplayHex(req.TxID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid txid: %v", err))
		return
	}

	mp, block, err := s.service.ProveTransaction(r.Context(), req.Block, txid)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	doc, err := types.NewProofDocument(s.service.Engine().Hasher().Name(), mp, false)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	doc.TxID = bitcoin.DisplayHex(txid)
	doc.BlockHash = bitcoin.DisplayHex(block.Hash())
	doc.BlockHeight = block.Height
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req types.VerifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	engine := s.service.Engine()
	result := &types.VerifyDocument{
		Hasher: engine.Hasher().Name(),
		Root:   req.Root,
		Leaf:   req.Leaf,
	}

	var err error
	switch {
	case req.Encoded != "" && len(req.Steps) > 0:
		writeError(w, http.StatusBadRequest, "steps and encoded are mutually exclusive")
		return
	case req.Encoded != "" || len(req.Steps) > 0:
		proof := req.Steps
		result.Source = "steps"
		if req.Encoded != "" {
			raw, decodeErr := hexutil.Decode(req.Encoded)
			if decodeErr != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid encoded proof: %v", decodeErr))
				return
			}
			if proof, err = merkle.DecodeProof(raw); err != nil {
				s.writeServiceError(w, err)
				return
			}
			result.Source = "encoded"
		}
		result.Steps = len(proof)
		err = engine.Verify(req.Root, req.Leaf, proof)
	default:
		record, verifyErr := s.service.VerifyStored(r.Context(), req.Root, req.Leaf)
		if record == nil {
			s.writeServiceError(w, verifyErr)
			return
		}
		result.Hasher = record.Hasher
		result.Steps = len(record.Steps)
		result.Source = "store:" + record.ID
		err = verifyErr
	}

	var verr *merkle.VerificationError
	switch {
	case err == nil:
		result.Valid = true
	case errors.As(err, &verr):
		result.Computed = &verr.Computed
	default:
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListProofs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	root, err := merkle.HexToHash(r.URL.Query().Get("root"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid root: %v", err))
		return
	}

	records, err := s.service.Store().ListProofs(root)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// writeServiceError maps service errors onto status codes. Anything unrecognized is a 500
// and only its existence is reported to the caller.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, merkle.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, merkle.ErrEmptyLeaves),
		errors.Is(err, merkle.ErrIndexOutOfRange),
		errors.Is(err, merkle.ErrMalformedProof),
		errors.Is(err, merkle.ErrProofTooLong),
		errors.Is(err, bitcoin.ErrMerkleRootMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, inclusion.ErrNoBlockSource):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		s.logger.Sugar().Errorw("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &types.ErrorResponse{Error: msg})
}
