// Package docs holds the generated swagger specification for the HTTP
// control surface. Hand-maintained here in lieu of running `swag init`,
// mirroring the shape swaggo's code generator produces so http-swagger can
// serve it without any other change to this package.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": ["http"],
    "swagger": "2.0",
    "info": {
        "description": "Operational HTTP surface for the inference gateway: liveness, readiness, Prometheus metrics and a polling snapshot of hardware/inference status.",
        "title": "jota gateway control surface",
        "contact": {
            "name": "jota gateway maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "1.0"
    },
    "basePath": "/",
    "paths": {
        "/healthz": {
            "get": {
                "description": "Always 200 once the process has started accepting connections.",
                "produces": ["text/plain"],
                "summary": "Process liveness",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "200 once startup has finished (credential cache liveness probe passed, model load attempted: a build without a model runtime is still reported ready); 503 before that and during shutdown.",
                "produces": ["application/json"],
                "summary": "Process readiness",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "not ready"}
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "Prometheus exposition format.",
                "produces": ["text/plain"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/status": {
            "get": {
                "description": "JSON snapshot of the same envelope shape broadcast over the metrics WS subscription, for clients that cannot hold a socket open.",
                "produces": ["application/json"],
                "summary": "Hardware and inference status snapshot",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "jota gateway control surface",
	Description:      "Operational HTTP surface for the inference gateway.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
