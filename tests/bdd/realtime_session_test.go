package bdd

import (
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	// 若要輸出到 os.Stdout 就 import "os"
	"os"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Paths:  []string{"./featureFiles"}, // 指向 feature 檔相對路徑
			Format: "pretty",
			Output: os.Stdout, // 將結果輸出到終端
		},
	}

	// 若 suite.Run() != 0 表示測試失敗，可以讓 t.Fail() 或 t.Fatal()
	if suite.Run() != 0 {
		t.Fail()
	}
}

// 這個函式用來註冊 Gherkin 與 Step Definition 的對應
func InitializeScenario(s *godog.ScenarioContext) {
	s.Step(`^會員 "([^"]*)" 密碼 "([^"]*)" 名字 "([^"]*)" 已存在$`, aMemberExists)
	s.Step(`^"([^"]*)" 用密碼 "([^"]*)" 登入$`, loginWith)
	s.Step(`^會話狀態應該是 "([^"]*)"$`, sessionStateShouldBe)
	s.Step(`^已進入聊天室 "([^"]*)"$`, enterRoom)
	s.Step(`^發送訊息 "([^"]*)"$`, sendMessage)
	s.Step(`^聊天室 "([^"]*)" 應該出現來自 "([^"]*)" 的訊息 "([^"]*)"$`, roomShouldContainMessage)
	s.Step(`^系統推送通知 "([^"]*)"$`, pushNotification)
	s.Step(`^未讀數應該是 (\d+)$`, unreadCountShouldBe)
	s.Step(`^標記已讀$`, markAsRead)
}

// 以下示例 Step function，行為以 in-memory 狀態模擬
type memberRecord struct {
	password  string
	firstName string
}

type roomMessage struct {
	sender  string
	content string
}

var (
	members      = map[string]memberRecord{}
	sessionState string
	loginName    string
	currentRoom  string
	roomMessages = map[string][]roomMessage{}
	unreadCount  int
)

func aMemberExists(email, password, firstName string) error {
	// Background 每個 scenario 都會跑，順便重置狀態
	members = map[string]memberRecord{email: {password: password, firstName: firstName}}
	sessionState = "ANONYMOUS"
	loginName = ""
	currentRoom = ""
	roomMessages = map[string][]roomMessage{}
	unreadCount = 0
	return nil
}

func loginWith(email, password string) error {
	record, ok := members[email]
	if !ok || record.password != password {
		sessionState = "ANONYMOUS"
		return nil
	}
	sessionState = "AUTHENTICATED"
	loginName = record.firstName
	return nil
}

func sessionStateShouldBe(expected string) error {
	if sessionState != expected {
		return fmt.Errorf("expected session state %s, but got %s", expected, sessionState)
	}
	return nil
}

func enterRoom(roomID string) error {
	if sessionState != "AUTHENTICATED" {
		return fmt.Errorf("cannot enter room %s while %s", roomID, sessionState)
	}
	currentRoom = roomID
	return nil
}

func sendMessage(content string) error {
	if currentRoom == "" {
		return fmt.Errorf("no room entered")
	}
	// echo-back：訊息經 broker 廣播後才出現在房間
	roomMessages[currentRoom] = append(roomMessages[currentRoom], roomMessage{
		sender:  loginName,
		content: content,
	})
	return nil
}

func roomShouldContainMessage(roomID, sender, content string) error {
	for _, msg := range roomMessages[roomID] {
		if msg.sender == sender && msg.content == content {
			return nil
		}
	}
	return fmt.Errorf("room %s has no message %q from %s", roomID, content, sender)
}

func pushNotification(message string) error {
	if sessionState != "AUTHENTICATED" {
		return fmt.Errorf("no authenticated session to notify")
	}
	unreadCount++
	return nil
}

func unreadCountShouldBe(expected int) error {
	if unreadCount != expected {
		return fmt.Errorf("expected unread count %d, but got %d", expected, unreadCount)
	}
	return nil
}

func markAsRead() error {
	unreadCount = 0
	return nil
}
