// Package application contém os casos de uso (regras de aplicação) de admissão
// e de limite de concorrência do proxy.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(key) retorna uma Decision (allow/deny + retry-after).
package application
