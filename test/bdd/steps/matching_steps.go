package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/database"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

// Far enough from the Nairobi-Thika corridor to never match
var offCorridorPoint = shared.GeoPoint{Latitude: -4.0435, Longitude: 39.6682}

type matchingContext struct {
	db        *gorm.DB
	matcher   logistics.Matcher
	middlemen party.MiddlemanRepository

	reeferID   uuid.UUID
	candidates []logistics.Candidate
}

func (ctx *matchingContext) reset() {
	db, err := database.NewTestConnection()
	if err != nil {
		panic(fmt.Errorf("failed to open test database: %w", err))
	}
	ctx.db = db
	ctx.matcher = persistence.NewGormSpatialMatcher(db)
	ctx.middlemen = persistence.NewGormMiddlemanRepository(db)
	ctx.reeferID = uuid.Nil
	ctx.candidates = nil
}

func (ctx *matchingContext) seedMiddleman(at shared.GeoPoint, truck party.TruckType, capacityKg int) (uuid.UUID, error) {
	loc := at
	m := &party.Middleman{
		ID:              uuid.New(),
		Name:            "Corridor Carrier",
		Phone:           "+254700000099",
		CurrentLocation: &loc,
		TruckCapacityKg: float64(capacityKg),
		TruckPlate:      "KBZ 456Y",
		TruckType:       truck,
		ServiceRadiusKm: 100,
		OnTimeRating:    4.0,
		IsAvailable:     true,
		StripeAccountID: "acct_carrier_bdd",
		CreatedAt:       helpers.FixedTime,
		UpdatedAt:       helpers.FixedTime,
	}
	if err := ctx.middlemen.Create(context.Background(), m); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create middleman: %w", err)
	}
	return m.ID, nil
}

// Given steps

func (ctx *matchingContext) aDryVanMiddlemanOnTheCorridor(capacityKg int) error {
	_, err := ctx.seedMiddleman(corridorPoint, party.TruckDryVan, capacityKg)
	return err
}

func (ctx *matchingContext) aRefrigeratedMiddlemanOnTheCorridor(capacityKg int) error {
	id, err := ctx.seedMiddleman(shared.GeoPoint{Latitude: -1.20, Longitude: 36.90}, party.TruckReefer, capacityKg)
	if err != nil {
		return err
	}
	ctx.reeferID = id
	return nil
}

func (ctx *matchingContext) aDryVanMiddlemanFarAway(_ int, capacityKg int) error {
	_, err := ctx.seedMiddleman(offCorridorPoint, party.TruckDryVan, capacityKg)
	return err
}

// When steps

func (ctx *matchingContext) search(minCapacityKg int, coldChain bool) error {
	candidates, err := ctx.matcher.FindNearRoute(context.Background(), logistics.MatchQuery{
		Pickup:            farmerLocation,
		Dropoff:           buyerLocation,
		CorridorRadiusKm:  25,
		MinCapacityKg:     float64(minCapacityKg),
		RequiresColdChain: coldChain,
		Limit:             20,
	})
	if err != nil {
		return err
	}
	ctx.candidates = candidates
	return nil
}

func (ctx *matchingContext) iSearchForColdChainTransport(volumeKg int) error {
	return ctx.search(volumeKg, true)
}

func (ctx *matchingContext) iSearchForTransport(volumeKg int) error {
	return ctx.search(volumeKg, false)
}

// Then steps

func (ctx *matchingContext) onlyTheRefrigeratedMiddlemanIsMatched() error {
	if len(ctx.candidates) != 1 {
		return fmt.Errorf("expected exactly one candidate but got %d", len(ctx.candidates))
	}
	if ctx.candidates[0].MiddlemanID != ctx.reeferID {
		return fmt.Errorf("expected the refrigerated middleman but got %s driving a %s",
			ctx.candidates[0].MiddlemanID, ctx.candidates[0].TruckType)
	}
	return nil
}

func (ctx *matchingContext) exactlyNMiddlemenAreMatched(count int) error {
	if len(ctx.candidates) != count {
		return fmt.Errorf("expected %d candidates but got %d", count, len(ctx.candidates))
	}
	return nil
}

// Register steps

func InitializeMatchingScenario(sc *godog.ScenarioContext) {
	matchingCtx := &matchingContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		matchingCtx.reset()
		return ctx, nil
	})

	sc.Step(`^a dry-van middleman on the corridor with (\d+) kg capacity$`, matchingCtx.aDryVanMiddlemanOnTheCorridor)
	sc.Step(`^a refrigerated middleman on the corridor with (\d+) kg capacity$`, matchingCtx.aRefrigeratedMiddlemanOnTheCorridor)
	sc.Step(`^a dry-van middleman (\d+) km away with (\d+) kg capacity$`, matchingCtx.aDryVanMiddlemanFarAway)
	sc.Step(`^I search the corridor for cold-chain transport of (\d+) kg$`, matchingCtx.iSearchForColdChainTransport)
	sc.Step(`^I search the corridor for transport of (\d+) kg$`, matchingCtx.iSearchForTransport)
	sc.Step(`^only the refrigerated middleman is matched$`, matchingCtx.onlyTheRefrigeratedMiddlemanIsMatched)
	sc.Step(`^exactly (\d+) middlemen? (?:is|are) matched$`, matchingCtx.exactlyNMiddlemenAreMatched)
}
