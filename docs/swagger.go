// Package docs provides Swagger documentation for the API.
package docs

// @title Collections Dunning API
// @version 1.0
// @description Multi-tenant dunning workflow engine for recovering overdue subscription payments

// @contact.name API Support
// @contact.email support@recouphq.io

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
