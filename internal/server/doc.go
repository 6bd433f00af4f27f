// Package server hosts the Fiber HTTP service and the request middleware chain
// that sits in front of the caching proxy handler. It bootstraps Fiber,
// attaches panic recovery and request-id middlewares, and binds the single
// configured resource path (GET + OPTIONS) to an injected ProxyHandler. It also
// owns the shared upstream http.Client so every refresh reuses one tuned
// transport. Keep exports narrow and accept explicit dependencies; diagnostics
// routes live in the routes subpackage.
package server
