package events

import (
	"bytes"
	"context"
	"sync"

	"bitbucket.org/etuitionbd/backend/helpers"
	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const receiptDateLayout = "02-01-2006 15:04 MST"

var _ settlement.CompletionListener = (*ReceiptListener)(nil)

// ReceiptStorage resolves the names printed on a receipt.
type ReceiptStorage interface {
	GetTuitionByID(ctx context.Context, id string) (*models.Tuition, error)
	GetApplicationByID(ctx context.Context, id string) (*models.Application, error)
}

// RenderFunc turns receipt data into a PDF document.
type RenderFunc func(models.PaymentReceiptHTML) (*bytes.Buffer, error)

// UploadFunc stores a rendered receipt under key and returns its URL.
type UploadFunc func(ctx context.Context, key string, body *bytes.Buffer) (string, error)

type ReceiptMail struct {
	Mailer       helpers.Mailer
	EmailFrom    string
	NameFrom     string
	Subject      string
	TemplatePath string
}

// ReceiptListener renders, stores and mails a receipt for every completed
// payment, in the background.
type ReceiptListener struct {
	storage  ReceiptStorage
	render   RenderFunc
	upload   UploadFunc
	mail     ReceiptMail
	currency string

	wg sync.WaitGroup
}

func NewReceiptListener(storage ReceiptStorage, render RenderFunc, upload UploadFunc, mail ReceiptMail, currency string) *ReceiptListener {
	if render == nil {
		render = helpers.GeneratePaymentReceiptPDF
	}
	return &ReceiptListener{
		storage:  storage,
		render:   render,
		upload:   upload,
		mail:     mail,
		currency: currency,
	}
}

func (l *ReceiptListener) PaymentCompleted(ctx context.Context, payment *models.Payment) {
	logger := logging.FromContext(ctx).WithField("payment_id", payment.ID)
	// the request context ends with the response
	ctx = logging.WithLogger(context.WithoutCancel(ctx), logger)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.deliver(ctx, payment); err != nil {
			logger.WithError(err).Error("failed delivering receipt")
			return
		}
		logger.Info("receipt delivered")
	}()
}

// Wait blocks until every receipt started so far is delivered or failed.
func (l *ReceiptListener) Wait() {
	l.wg.Wait()
}

func (l *ReceiptListener) deliver(ctx context.Context, payment *models.Payment) error {
	tuition, err := l.storage.GetTuitionByID(ctx, payment.TuitionID)
	if err != nil {
		return errors.Wrap(err, "failed getting tuition")
	}
	if tuition == nil {
		return errors.Errorf("tuition %s not found", payment.TuitionID)
	}

	application, err := l.storage.GetApplicationByID(ctx, payment.ApplicationID)
	if err != nil {
		return errors.Wrap(err, "failed getting application")
	}
	if application == nil {
		return errors.Errorf("application %s not found", payment.ApplicationID)
	}

	receipt := models.PaymentReceiptHTML{
		ID:            payment.ID,
		StudentName:   tuition.StudentName,
		TutorName:     application.TutorName,
		Subject:       tuition.Subject,
		Amount:        payment.Amount,
		PlatformFee:   payment.PlatformFee,
		TutorEarnings: payment.TutorEarnings,
		Currency:      l.currency,
	}
	if payment.PaidAt != nil {
		receipt.PaidAt = payment.PaidAt.Format(receiptDateLayout)
	}

	pdf, err := l.render(receipt)
	if err != nil {
		return errors.Wrap(err, "failed rendering receipt")
	}
	content := pdf.Bytes()

	var url string
	if l.upload != nil {
		url, err = l.upload(ctx, models.ReceiptKey(payment.ID), pdf)
		if err != nil {
			return errors.Wrap(err, "failed uploading receipt")
		}
		logging.FromContext(ctx).WithFields(log.Fields{
			"payment_id": payment.ID,
			"url":        url,
		}).Info("receipt uploaded")
	}

	if l.mail.Mailer == nil {
		return nil
	}

	ed := helpers.EmailData{
		EmailTo:      payment.StudentID,
		NameTo:       tuition.StudentName,
		EmailFrom:    l.mail.EmailFrom,
		NameFrom:     l.mail.NameFrom,
		Subject:      l.mail.Subject,
		TemplatePath: l.mail.TemplatePath,
		FileName:     payment.ID + ".pdf",
		FileContent:  content,
		Mailer:       l.mail.Mailer,
	}
	err = ed.SendEmail(models.PaymentSuccessMail{
		Name:       tuition.StudentName,
		Subject:    tuition.Subject,
		Amount:     payment.Amount,
		Currency:   l.currency,
		ReceiptURL: url,
	})
	return errors.Wrap(err, "failed sending receipt mail")
}
