package validators

import "go.mongodb.org/mongo-driver/bson"

var EmergencyRequestValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"request_id",
			"patient_id",
			"patient_info",
			"location",
			"emergency_type",
			"status",
			"status_history",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"request_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"patient_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"driver_id": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},

			"patient_info": bson.M{
				"bsonType": "object",
				"required": []string{"name", "contact"},
				"properties": bson.M{
					"name":    bson.M{"bsonType": "string", "minLength": 1, "maxLength": 120},
					"contact": bson.M{"bsonType": "string", "minLength": 5, "maxLength": 32},
				},
			},

			"location": bson.M{
				"bsonType": "object",
				"required": []string{"pickup", "destination"},
				"properties": bson.M{
					"pickup":      bson.M{"bsonType": "string", "minLength": 1, "maxLength": 300},
					"destination": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 300},
				},
			},

			"emergency_type": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"accepted",
					"started_journey",
					"on_the_way",
					"almost_there",
					"looking_for_patient",
					"received_patient",
					"dropping_off",
					"completed",
					"cancelled",
					"timed_out",
				},
			},

			"status_history": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "date",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
