package pgsql

import (
	portsrepo "github.com/finflow/loan_engine_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	loanRepo := newPgxLoanRepository(dbPool)

	return portsrepo.RepositoryProvider{
		LoanRepo: loanRepo,
	}
}
