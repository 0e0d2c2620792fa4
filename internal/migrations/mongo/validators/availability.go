package validators

import "go.mongodb.org/mongo-driver/bson"

var daysOfWeek = []string{
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
}

// clockPattern matches HH:MM on a 24 hour clock.
const clockPattern = `^([01][0-9]|2[0-3]):[0-5][0-9]$`

var AvailabilityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"doctor_id",
			"day_of_week",
			"time_slots",
			"is_working_day",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"doctor_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"day_of_week": bson.M{
				"bsonType": "string",
				"enum":     daysOfWeek,
			},

			"time_slots": bson.M{
				"bsonType": "array",
				"maxItems": 96,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"start_time", "end_time", "is_available"},
					"properties": bson.M{
						"start_time":   bson.M{"bsonType": "string", "pattern": clockPattern},
						"end_time":     bson.M{"bsonType": "string", "pattern": clockPattern},
						"is_available": bson.M{"bsonType": "bool"},
					},
				},
			},

			"is_working_day": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
