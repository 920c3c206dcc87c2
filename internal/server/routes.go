package server

// registerRoutes wires every HTTP endpoint to its handler.
func (s *Server) registerRoutes() {
	s.E.GET("/healthz", s.healthHandler.Check)

	api := s.E.Group("/api")

	api.POST("/executions", s.executionHandler.Execute)
	api.GET("/executions", s.executionHandler.History)
	api.GET("/pool/stats", s.executionHandler.PoolStats)

	api.GET("/scripts", s.scriptsHandler.List)
	api.GET("/scripts/:name", s.scriptsHandler.Get)

	api.GET("/sessions/:id", s.sessionHandler.ListKeys)
	api.DELETE("/sessions/:id", s.sessionHandler.Clear)
	api.GET("/sessions/:id/values/:key", s.sessionHandler.GetValue)
	api.PUT("/sessions/:id/values/:key", s.sessionHandler.SetValue)
	api.DELETE("/sessions/:id/values/:key", s.sessionHandler.DeleteValue)
}
