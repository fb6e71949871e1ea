package server

import "net/http"

// Router wires the handlers onto a ServeMux.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Blockchain synchronization
	mux.HandleFunc("GET /sync", WithLogging(s.Sync))

	// Poll registration and voting
	mux.HandleFunc("POST /polls", WithLogging(s.CreatePoll))
	mux.HandleFunc("POST /polls/{username}/{permlink}/votes", WithLogging(s.CastVote))

	// Tally and audit views
	mux.HandleFunc("GET /polls/{username}/{permlink}/summary", WithLogging(s.Summary))
	mux.HandleFunc("GET /polls/{username}/{permlink}/audit", WithLogging(s.Audit))
	mux.HandleFunc("GET /vote_check", WithLogging(s.VoteCheck))
	mux.HandleFunc("GET /stats", WithLogging(s.Stats))

	// Communities and payload building for external broadcasters
	mux.HandleFunc("PUT /communities", WithLogging(s.PutCommunity))
	mux.HandleFunc("POST /vote_transaction_details", WithLogging(s.VoteTransactionDetails))

	return mux
}
