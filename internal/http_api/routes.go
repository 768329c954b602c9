package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	api := s.router.Group("/api/v1")

	api.GET("/nfts", s.getNFTs)
	api.GET("/claimable", s.getClaimable)
	api.POST("/claim/prepare", s.prepareClaim)
	api.POST("/claim", s.submitClaim)
	api.GET("/claims", s.getClaimHistory)

	api.GET("/users/:address", s.getUser)
	api.PUT("/users", s.registerEmail)

	api.GET("/payout", s.getPayout)

	admin := api.Group("/admin")
	admin.POST("/payout", s.setPayout)
	admin.GET("/escrow", s.getEscrow)
}
