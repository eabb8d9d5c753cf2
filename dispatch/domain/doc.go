// Package domain define os tipos do despacho com rodízio de credenciais:
// pool de credenciais, cursor de rodízio, registro de tentativas, classificação
// de falhas e a taxonomia de erros devolvida ao handler HTTP.
//
// Sem dependência de net/http: o chamador do upstream é uma interface (Caller).
package domain
