package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"testhub/config"
	"testhub/routes"
	"testhub/utils"
)

func newApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "testhub.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, utils.Migrate(db))

	cfg := &config.Config{JWTSecret: "testsecret", TokenTTLHours: 72, ServerPort: "8080"}
	app := fiber.New()
	routes.SetupRoutes(app, db, cfg, log.New(io.Discard, "", 0))
	return app, db
}

// request fires a JSON request and decodes the response body into a map.
func request(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

func registerUser(t *testing.T, app *fiber.App, username, role string) string {
	t.Helper()
	status, result := request(t, app, "POST", "/api/auth/register", "", map[string]interface{}{
		"username":    username,
		"email":       username + "@example.com",
		"password":    "password123",
		"role":        role,
		"name":        "Jan Kowalski",
		"roll_number": "42",
	})
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, result["token"])
	return result["token"].(string)
}

func quizPayload(published bool) map[string]interface{} {
	return map[string]interface{}{
		"title":            "Go basics",
		"description":      "Two quick questions",
		"duration_minutes": 30,
		"is_published":     published,
		"questions": []map[string]interface{}{
			{
				"text":   "What does go vet do?",
				"points": 1,
				"options": []map[string]interface{}{
					{"text": "reports suspicious constructs", "is_correct": true},
					{"text": "formats code"},
				},
			},
			{
				"text":   "Which type is comparable?",
				"points": 2,
				"options": []map[string]interface{}{
					{"text": "slice"},
					{"text": "array", "is_correct": true},
				},
			},
		},
	}
}

func createQuiz(t *testing.T, app *fiber.App, token string, published bool) float64 {
	t.Helper()
	status, result := request(t, app, "POST", "/api/teacher/tests/", token, quizPayload(published))
	require.Equal(t, fiber.StatusCreated, status)
	data := result["data"].(map[string]interface{})
	return data["test_id"].(float64)
}

func TestRegisterAndLogin(t *testing.T) {
	app, _ := newApp(t)

	token := registerUser(t, app, "newuser", "student")
	assert.NotEmpty(t, token)

	status, result := request(t, app, "POST", "/api/auth/login", "", map[string]string{
		"username": "newuser",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, result["token"])

	status, _ = request(t, app, "POST", "/api/auth/login", "", map[string]string{
		"username": "newuser",
		"password": "wrongpassword",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRegisterValidation(t *testing.T) {
	app, _ := newApp(t)

	status, _ := request(t, app, "POST", "/api/auth/register", "", map[string]string{
		"username": "ab", // too short
		"email":    "not-an-email",
		"password": "short",
		"role":     "admin", // not an allowed role
		"name":     "X",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestRoleGates(t *testing.T) {
	app, _ := newApp(t)
	studentToken := registerUser(t, app, "student1", "student")
	teacherToken := registerUser(t, app, "teacher1", "teacher")

	status, _ := request(t, app, "GET", "/api/teacher/tests/", studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = request(t, app, "GET", "/api/student/tests", teacherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = request(t, app, "GET", "/api/student/tests", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateTestRejectsUnanswerableQuestion(t *testing.T) {
	app, _ := newApp(t)
	teacherToken := registerUser(t, app, "teacher1", "teacher")

	payload := quizPayload(true)
	payload["questions"] = []map[string]interface{}{
		{
			"text":   "No right answer here",
			"points": 1,
			"options": []map[string]interface{}{
				{"text": "wrong"},
				{"text": "also wrong"},
			},
		},
	}
	status, _ := request(t, app, "POST", "/api/teacher/tests/", teacherToken, payload)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUnpublishedTestsStayHidden(t *testing.T) {
	app, _ := newApp(t)
	teacherToken := registerUser(t, app, "teacher1", "teacher")
	studentToken := registerUser(t, app, "student1", "student")

	testID := createQuiz(t, app, teacherToken, false)

	status, result := request(t, app, "GET", "/api/student/tests", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, result["data"])

	status, _ = request(t, app, "PUT",
		"/api/teacher/tests/"+jsonNumber(testID)+"/publish", teacherToken,
		map[string]bool{"is_published": true})
	require.Equal(t, fiber.StatusOK, status)

	status, result = request(t, app, "GET", "/api/student/tests", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, result["data"], 1)
}

// TestFullAttemptFlow walks the whole lifecycle: a teacher publishes a test,
// a student takes it, and the teacher reads the analytics.
func TestFullAttemptFlow(t *testing.T) {
	app, _ := newApp(t)
	teacherToken := registerUser(t, app, "teacher1", "teacher")
	studentToken := registerUser(t, app, "student1", "student")

	testID := createQuiz(t, app, teacherToken, true)
	testPath := jsonNumber(testID)

	// Start an attempt. The payload must not leak the answer key.
	status, result := request(t, app, "POST",
		"/api/student/tests/"+testPath+"/attempts", studentToken, nil)
	require.Equal(t, fiber.StatusCreated, status)

	data := result["data"].(map[string]interface{})
	token := data["token"].(string)
	require.NotEmpty(t, token)
	assert.EqualValues(t, 1800, data["time_left"])
	assert.EqualValues(t, 3, data["total_points"])

	questions := data["questions"].([]interface{})
	require.Len(t, questions, 2)
	for _, q := range questions {
		for _, o := range q.(map[string]interface{})["options"].([]interface{}) {
			_, leaked := o.(map[string]interface{})["is_correct"]
			assert.False(t, leaked, "option payload must not reveal correctness")
		}
	}

	q1 := questions[0].(map[string]interface{})
	q2 := questions[1].(map[string]interface{})
	q1Options := q1["options"].([]interface{})
	q2Options := q2["options"].([]interface{})

	// Q1: first option is correct. Q2: first option is wrong. Score 1 of 3.
	answer := func(q, o map[string]interface{}) {
		status, _ := request(t, app, "PUT",
			"/api/student/attempts/"+token+"/answer", studentToken,
			map[string]interface{}{
				"question_id": q["id"],
				"option_id":   o["id"],
			})
		require.Equal(t, fiber.StatusOK, status)
	}
	answer(q1, q1Options[0].(map[string]interface{}))
	answer(q2, q2Options[0].(map[string]interface{}))

	// Navigation clamps at both ends.
	status, result = request(t, app, "POST",
		"/api/student/attempts/"+token+"/next", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, result["data"].(map[string]interface{})["current_question"])

	status, result = request(t, app, "POST",
		"/api/student/attempts/"+token+"/next", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, result["data"].(map[string]interface{})["current_question"])

	// Submit and check the scored result.
	status, result = request(t, app, "POST",
		"/api/student/attempts/"+token+"/submit", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	submitted := result["data"].(map[string]interface{})
	assert.EqualValues(t, 1, submitted["score"])
	assert.EqualValues(t, 3, submitted["total_points"])
	assert.EqualValues(t, 33, submitted["percentage"])

	// The completed state is still readable through the session.
	status, result = request(t, app, "GET",
		"/api/student/attempts/"+token, studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	state := result["data"].(map[string]interface{})
	assert.Equal(t, "completed", state["state"])
	require.NotNil(t, state["result"])

	// A second attempt at the same test is refused.
	status, _ = request(t, app, "POST",
		"/api/student/tests/"+testPath+"/attempts", studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	// The attempted test drops out of the student's available list.
	status, result = request(t, app, "GET", "/api/student/tests", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, result["data"])

	// History shows the graded attempt with the 40% threshold applied.
	status, result = request(t, app, "GET", "/api/student/history", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	history := result["data"].([]interface{})
	require.Len(t, history, 1)
	row := history[0].(map[string]interface{})
	assert.EqualValues(t, 1, row["score"])
	assert.Equal(t, false, row["passed"]) // 33% < 40%

	// Teacher-side analytics aggregate the same numbers.
	status, result = request(t, app, "GET",
		"/api/teacher/tests/"+testPath+"/analytics", teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	analytics := result["data"].(map[string]interface{})
	summary := analytics["summary"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["total_attempts"])
	assert.EqualValues(t, 1, summary["average_score"])
	assert.EqualValues(t, 0, summary["pass_rate"])

	attempts := analytics["attempts"].([]interface{})
	require.Len(t, attempts, 1)
	attemptRow := attempts[0].(map[string]interface{})
	assert.Equal(t, "Jan Kowalski", attemptRow["student_name"])
	assert.Equal(t, "42", attemptRow["student_roll"])
	assert.EqualValues(t, 33, attemptRow["percentage"])
}

func TestAbandonAttempt(t *testing.T) {
	app, _ := newApp(t)
	teacherToken := registerUser(t, app, "teacher1", "teacher")
	studentToken := registerUser(t, app, "student1", "student")

	testID := createQuiz(t, app, teacherToken, true)
	testPath := jsonNumber(testID)

	status, result := request(t, app, "POST",
		"/api/student/tests/"+testPath+"/attempts", studentToken, nil)
	require.Equal(t, fiber.StatusCreated, status)
	token := result["data"].(map[string]interface{})["token"].(string)

	status, _ = request(t, app, "DELETE",
		"/api/student/attempts/"+token, studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = request(t, app, "GET",
		"/api/student/attempts/"+token, studentToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	// Abandoning never counts as an attempt; the student may start over.
	status, _ = request(t, app, "POST",
		"/api/student/tests/"+testPath+"/attempts", studentToken, nil)
	assert.Equal(t, fiber.StatusCreated, status)
}

func TestSessionOwnership(t *testing.T) {
	app, _ := newApp(t)
	teacherToken := registerUser(t, app, "teacher1", "teacher")
	studentToken := registerUser(t, app, "student1", "student")
	otherToken := registerUser(t, app, "student2", "student")

	testID := createQuiz(t, app, teacherToken, true)

	status, result := request(t, app, "POST",
		"/api/student/tests/"+jsonNumber(testID)+"/attempts", studentToken, nil)
	require.Equal(t, fiber.StatusCreated, status)
	token := result["data"].(map[string]interface{})["token"].(string)

	status, _ = request(t, app, "GET",
		"/api/student/attempts/"+token, otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestAnalyticsOwnership(t *testing.T) {
	app, _ := newApp(t)
	teacherToken := registerUser(t, app, "teacher1", "teacher")
	otherTeacher := registerUser(t, app, "teacher2", "teacher")

	testID := createQuiz(t, app, teacherToken, true)

	status, _ := request(t, app, "GET",
		"/api/teacher/tests/"+jsonNumber(testID)+"/analytics", otherTeacher, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	// No attempts yet: the owner still gets a well-formed all-zero summary.
	status, result := request(t, app, "GET",
		"/api/teacher/tests/"+jsonNumber(testID)+"/analytics", teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	summary := result["data"].(map[string]interface{})["summary"].(map[string]interface{})
	assert.EqualValues(t, 0, summary["total_attempts"])
	assert.EqualValues(t, 0, summary["average_score"])
}

func TestQuestionManagement(t *testing.T) {
	app, _ := newApp(t)
	teacherToken := registerUser(t, app, "teacher1", "teacher")

	testID := createQuiz(t, app, teacherToken, false)
	testPath := jsonNumber(testID)

	status, result := request(t, app, "POST",
		"/api/teacher/tests/"+testPath+"/questions", teacherToken,
		map[string]interface{}{
			"text":   "What closes a channel?",
			"points": 1,
			"options": []map[string]interface{}{
				{"text": "close(ch)", "is_correct": true},
				{"text": "ch.Close()"},
			},
		})
	require.Equal(t, fiber.StatusCreated, status)
	question := result["data"].(map[string]interface{})["question"].(map[string]interface{})
	assert.EqualValues(t, 3, question["Position"]) // appended after the two seeded questions
	questionID := question["ID"].(float64)

	status, _ = request(t, app, "PUT",
		"/api/teacher/tests/"+testPath+"/questions/"+jsonNumber(questionID), teacherToken,
		map[string]interface{}{
			"text":   "Which builtin closes a channel?",
			"points": 2,
			"options": []map[string]interface{}{
				{"text": "close", "is_correct": true},
				{"text": "done"},
				{"text": "stop"},
			},
		})
	require.Equal(t, fiber.StatusOK, status)

	status, result = request(t, app, "GET",
		"/api/teacher/tests/"+testPath, teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	got := result["data"].(map[string]interface{})
	require.Len(t, got["Questions"], 3)

	status, _ = request(t, app, "DELETE",
		"/api/teacher/tests/"+testPath+"/questions/"+jsonNumber(questionID), teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, result = request(t, app, "GET",
		"/api/teacher/tests/"+testPath, teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	got = result["data"].(map[string]interface{})
	require.Len(t, got["Questions"], 2)
}

func TestUpdateProfile(t *testing.T) {
	app, _ := newApp(t)
	token := registerUser(t, app, "student1", "student")

	status, _ := request(t, app, "PUT", "/api/users/profile", token,
		map[string]string{"name": "Anna Nowak", "roll_number": "7"})
	require.Equal(t, fiber.StatusOK, status)

	status, result := request(t, app, "GET", "/api/users/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	profile := result["data"].(map[string]interface{})
	assert.Equal(t, "Anna Nowak", profile["name"])
	assert.Equal(t, "7", profile["roll_number"])
}

// jsonNumber renders a decoded JSON number as a path segment.
func jsonNumber(f float64) string {
	return strconv.Itoa(int(f))
}
