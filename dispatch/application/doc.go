// Package application implementa o despacho de uma requisição lógica pelo pool
// de credenciais (Dispatcher.Dispatch). Não conhece net/http.
package application
