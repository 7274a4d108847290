package app

import (
	"fmt"

	credentialHTTP "github.com/allisson/tierguard/internal/credential/http"
	credentialRepository "github.com/allisson/tierguard/internal/credential/repository"
	credentialService "github.com/allisson/tierguard/internal/credential/service"
	credentialUseCase "github.com/allisson/tierguard/internal/credential/usecase"
	"github.com/allisson/tierguard/internal/database"
)

// TokenRepository returns the token repository based on database driver.
func (c *Container) TokenRepository() (credentialUseCase.TokenRepository, error) {
	var err error
	c.tokenRepositoryInit.Do(func() {
		c.tokenRepository, err = c.initTokenRepository()
		if err != nil {
			c.setInitError("tokenRepository", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("tokenRepository"); storedErr != nil {
		return nil, storedErr
	}
	return c.tokenRepository, nil
}

// CredentialCodec returns the codec that signs and parses credentials.
func (c *Container) CredentialCodec() (credentialService.CredentialCodec, error) {
	var err error
	c.credentialCodecInit.Do(func() {
		c.credentialCodec, err = credentialService.NewCredentialCodec(
			[]byte(c.config.AuthSigningKey),
			c.config.AuthIssuer,
			c.Clock(),
		)
		if err != nil {
			err = fmt.Errorf("failed to create credential codec: %w", err)
			c.setInitError("credentialCodec", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("credentialCodec"); storedErr != nil {
		return nil, storedErr
	}
	return c.credentialCodec, nil
}

// RevocationIndex returns the cached revocation index.
func (c *Container) RevocationIndex() (credentialService.RevocationIndex, error) {
	var err error
	c.revocationIndexInit.Do(func() {
		c.revocationIndex, err = c.initRevocationIndex()
		if err != nil {
			c.setInitError("revocationIndex", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("revocationIndex"); storedErr != nil {
		return nil, storedErr
	}
	return c.revocationIndex, nil
}

// CredentialUseCase returns the credential use case.
func (c *Container) CredentialUseCase() (credentialUseCase.CredentialUseCase, error) {
	var err error
	c.credentialUseCaseInit.Do(func() {
		c.credentialUseCase, err = c.initCredentialUseCase()
		if err != nil {
			c.setInitError("credentialUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("credentialUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.credentialUseCase, nil
}

// CredentialHandler returns the HTTP handler for credential operations.
func (c *Container) CredentialHandler() (*credentialHTTP.CredentialHandler, error) {
	var err error
	c.credentialHandlerInit.Do(func() {
		var useCase credentialUseCase.CredentialUseCase
		useCase, err = c.CredentialUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get credential use case for credential handler: %w", err)
			c.setInitError("credentialHandler", err)
			return
		}
		c.credentialHandler = credentialHTTP.NewCredentialHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("credentialHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.credentialHandler, nil
}

func (c *Container) initTokenRepository() (credentialUseCase.TokenRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for token repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return credentialRepository.NewPostgreSQLTokenRepository(db), nil
	case database.DriverMySQL:
		return credentialRepository.NewMySQLTokenRepository(db), nil
	case database.DriverSQLite:
		return credentialRepository.NewSQLiteTokenRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRevocationIndex() (credentialService.RevocationIndex, error) {
	tokenRepository, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for revocation index: %w", err)
	}

	return credentialService.NewRevocationIndex(
		tokenRepository,
		c.Clock(),
		credentialService.RevocationIndexConfig{
			RefreshInterval: c.config.RevocationCacheRefreshInterval,
			MaxEntries:      c.config.RevocationCacheMaxEntries,
			StoreTimeout:    c.config.StoreTimeout,
		},
		c.Logger(),
	), nil
}

func (c *Container) initCredentialUseCase() (credentialUseCase.CredentialUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for credential use case: %w", err)
	}

	tokenRepository, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for credential use case: %w", err)
	}

	index, err := c.RevocationIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to get revocation index for credential use case: %w", err)
	}

	codec, err := c.CredentialCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential codec for credential use case: %w", err)
	}

	baseUseCase := credentialUseCase.NewCredentialUseCase(
		c.config,
		txManager,
		tokenRepository,
		index,
		codec,
		c.Clock(),
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for credential use case: %w", err)
		}
		return credentialUseCase.NewCredentialUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
