package httpapi

import "github.com/gofiber/fiber/v2"

func registerRoutes(app *fiber.App, deps *Deps) {
	h := &handlers{deps: deps}

	app.Post("/dataframe/query", WithBody(new(DataFrameQueryRequest), h.dataframeQuery))

	app.Get("/session", h.listSessions)
	app.Get("/session/create", h.createSession)
	app.Get("/session/:id", h.sessionInfo)
	app.Delete("/session/:id", h.destroySession)

	app.Post("/session/:id/query", h.sessionQuery)

	app.Get("/session/:id/datasource", h.listDataSources)
	app.Post("/session/:id/datasource", WithBody(new(DataSourcesRequest), h.appendDataSources))
	app.Post("/session/:id/datasource/upload", h.uploadDataSource)
	app.Post("/session/:id/datasource/save", WithBody(new(DataSourcesRequest), h.saveDataSources))
	app.Get("/session/:id/datasource/:name", h.dataSourceDetail)
	app.Delete("/session/:id/datasource/:name", h.removeDataSource)
	app.Get("/session/:id/datasource/:name/refresh", h.refreshDataSource)

	app.Post("/session/:id/processor", WithBody(new(ProcessorInput), h.runProcessor))

	app.Get("/healthz", h.healthz)
	app.Get("/sysinfo", h.sysinfo)
}
