package main

//go:generate go tool swag init -g cmd/sentiment/docs.go -d ../.. -o ../../docs

// @title           easyweb3 Sentiment API
// @version         0.1.0
// @description     Token sentiment classification with a price-aware cache, memes and token audits.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
