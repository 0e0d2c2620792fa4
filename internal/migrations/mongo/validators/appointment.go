package validators

import "go.mongodb.org/mongo-driver/bson"

var AppointmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"doctor_id",
			"patient_id",
			"appointment_date",
			"start_time",
			"end_time",
			"type",
			"status",
			"video_call_status",
			"slot_active",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"doctor_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"patient_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"appointment_date": bson.M{
				"bsonType": "date",
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum":     []string{"in-person", "tele-consult"},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"scheduled", "completed", "cancelled", "no-show"},
			},

			"consultation_fee": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"video_call_status": bson.M{
				"bsonType": "string",
				"enum":     []string{"not-started", "in-progress", "completed"},
			},

			"slot_active": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
