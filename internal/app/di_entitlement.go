package app

import (
	"fmt"

	credentialHTTP "github.com/allisson/tierguard/internal/credential/http"
	"github.com/allisson/tierguard/internal/database"
	entitlementRepository "github.com/allisson/tierguard/internal/entitlement/repository"
	entitlementUseCase "github.com/allisson/tierguard/internal/entitlement/usecase"
)

// TierStateRepository returns the tier state repository based on database driver.
func (c *Container) TierStateRepository() (entitlementUseCase.TierStateRepository, error) {
	var err error
	c.tierStateRepositoryInit.Do(func() {
		c.tierStateRepository, err = c.initTierStateRepository()
		if err != nil {
			c.setInitError("tierStateRepository", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("tierStateRepository"); storedErr != nil {
		return nil, storedErr
	}
	return c.tierStateRepository, nil
}

// EntitlementUseCase returns the entitlement use case.
func (c *Container) EntitlementUseCase() (entitlementUseCase.EntitlementUseCase, error) {
	var err error
	c.entitlementUseCaseInit.Do(func() {
		c.entitlementUseCase, err = c.initEntitlementUseCase()
		if err != nil {
			c.setInitError("entitlementUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("entitlementUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.entitlementUseCase, nil
}

// EntitlementHandler returns the HTTP handler for entitlement introspection.
func (c *Container) EntitlementHandler() (*credentialHTTP.EntitlementHandler, error) {
	var err error
	c.entitlementHandlerInit.Do(func() {
		var useCase entitlementUseCase.EntitlementUseCase
		useCase, err = c.EntitlementUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get entitlement use case for entitlement handler: %w", err)
			c.setInitError("entitlementHandler", err)
			return
		}
		c.entitlementHandler = credentialHTTP.NewEntitlementHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("entitlementHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.entitlementHandler, nil
}

func (c *Container) initTierStateRepository() (entitlementUseCase.TierStateRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tier state repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return entitlementRepository.NewPostgreSQLTierStateRepository(db), nil
	case database.DriverMySQL:
		return entitlementRepository.NewMySQLTierStateRepository(db), nil
	case database.DriverSQLite:
		return entitlementRepository.NewSQLiteTierStateRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initEntitlementUseCase() (entitlementUseCase.EntitlementUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for entitlement use case: %w", err)
	}

	repo, err := c.TierStateRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get tier state repository for entitlement use case: %w", err)
	}

	baseUseCase := entitlementUseCase.NewEntitlementUseCase(c.config, txManager, repo, c.Clock(), c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for entitlement use case: %w", err)
		}
		return entitlementUseCase.NewEntitlementUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
