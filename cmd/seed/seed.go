package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/store/model"
	"github.com/nulzo/model-control-plane/internal/store/sqlite"
)

func main() {
	repo, err := sqlite.NewSQLiteStorage("controlplane.db", zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	ctx := context.Background()

	orgID := uuid.New().String()
	teamID := uuid.New().String()
	fmt.Printf("Seeding org %s, team %s\n", orgID, teamID)

	secret := &model.Secret{
		ID:          model.NewID(),
		OrgID:       orgID,
		TeamID:      teamID,
		Key:         "OPENAI_API_KEY",
		Value:       "sk-seed-1234567890",
		Label:       "Shared OpenAI key",
		CreatedDate: time.Now(),
	}
	if err := repo.Secrets().Create(ctx, secret); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Created secret: %s\n", secret.ID)

	credential := &model.Credential{
		ID:          model.NewID(),
		OrgID:       orgID,
		TeamID:      teamID,
		Name:        "OpenAI Main",
		Type:        model.CredentialOpenAI,
		Key:         "sk-seed-1234567890",
		CreatedDate: time.Now(),
	}
	if err := repo.Credentials().Create(ctx, credential); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Created credential: %s\n", credential.ID)

	m := &model.Model{
		ID:              model.NewID(),
		OrgID:           orgID,
		TeamID:          teamID,
		Name:            "default-embedder",
		Model:           teamID + "/default-embedder",
		ProviderModelID: "text-embedding-3-small",
		Type:            model.ModelTypeEmbedding,
		System:          model.CredentialOpenAI,
		EmbeddingLength: 1536,
		CredentialID:    credential.ID,
	}
	m.CreatedDate = time.Now()
	if err := repo.Models().Create(ctx, m); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Created model: %s (%s)\n", m.ID, m.Model)

	agent := &model.Agent{
		ID:      model.NewID(),
		TeamID:  teamID,
		Name:    "Seed Agent",
		ModelID: m.ID,
	}
	if err := repo.Agents().Create(ctx, agent); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Created agent: %s\n", agent.ID)

	fmt.Println("Seed complete.")
}
