package outbox

const userCreatedSchema = `{
  "type": "object",
  "title": "UserCreated",
  "properties": {
    "user_id": {"type": "string"},
    "username": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "username", "created_at"],
  "additionalProperties": false
}`

const exerciseLoggedSchema = `{
  "type": "object",
  "title": "ExerciseLogged",
  "properties": {
    "exercise_id": {"type": "string"},
    "user_id": {"type": "string"},
    "description": {"type": "string"},
    "duration_min": {"type": "integer", "minimum": 1},
    "date": {"type": "string", "format": "date"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["exercise_id", "user_id", "description", "duration_min", "date", "created_at"],
  "additionalProperties": false
}`
