// Package dispatch expõe o endpoint de chat: valida a requisição, entrega o
// payload ao Dispatcher e traduz o resultado para HTTP.
package dispatch
