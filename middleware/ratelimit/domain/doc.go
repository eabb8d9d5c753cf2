// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
//
// O controle de admissão do proxy é modelado como um LimiterStore: para cada
// chave de cliente há um Limiter, e a decisão (Decision) diz se a requisição
// entra e, se não entrar, quando tentar de novo.
package domain
