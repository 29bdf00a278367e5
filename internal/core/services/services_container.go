package services

import (
	portsrepo "github.com/finflow/loan_engine_app/internal/core/ports/repositories"
	portssvc "github.com/finflow/loan_engine_app/internal/core/ports/services"
)

// NewServiceContainer wires all services against the repository provider.
func NewServiceContainer(repoProvider *portsrepo.RepositoryProvider, options ...LoanServiceOption) *portssvc.ServiceContainer {
	return &portssvc.ServiceContainer{
		Loan: NewLoanService(repoProvider.LoanRepo, options...),
	}
}
