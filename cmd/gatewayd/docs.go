package main

// General API documentation for swaggo. The served spec is hand-maintained
// in internal/docs to match these annotations.
//
// @title           jota gateway control surface
// @version         1.0
// @description     HTTP control surface for the concurrent multi-tenant inference gateway; the WS data plane is documented separately in the protocol spec.
//
// @contact.name   jota gateway maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
