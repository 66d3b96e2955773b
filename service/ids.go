package service

import (
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newEntityID() string { return primitive.NewObjectID().Hex() }

func newEventID() string { return uuid.NewString() }
