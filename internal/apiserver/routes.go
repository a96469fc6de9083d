package apiserver

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/agents", s.handleListAgents).Methods("GET")
	api.HandleFunc("/flows", s.handleListFlows).Methods("GET")

	api.HandleFunc("/tools", s.handleListTools).Methods("GET")
	api.HandleFunc("/tools/{name}", s.handleCallTool).Methods("POST")

	// thread IDs contain slashes
	api.HandleFunc("/chats", s.handleAsk).Methods("POST")
	api.HandleFunc("/chats", s.handleListChats).Methods("GET")
	api.HandleFunc("/chats/{id:.+}/messages", s.handleGetMessages).Methods("GET")
	api.HandleFunc("/chats/{id:.+}", s.handleDeleteChat).Methods("DELETE")
}
